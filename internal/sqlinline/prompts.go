package sqlinline

const QInsertPrompt = `--sql 82143af9-1097-4b35-9d33-bc6d7667f0df
insert into prompts (id, job_id, kind, provider, text, negative, style, rubric, created_at)
values ($1::uuid, $2::uuid, $3::text, nullif($4::text, ''), $5::text, $6::text, $7::jsonb, $8::jsonb, now())
returning created_at;
`

const QSelectPromptByID = `--sql 0c8b27fd-b0aa-43e3-8ef5-93505156ad3c
select id::text, job_id::text, kind, coalesce(provider, ''), text, negative, style, rubric, created_at
from prompts
where id = $1::uuid;
`

const QListPromptsByJob = `--sql 0cdd21a8-21f8-4025-95b8-97b4b3bf7083
select id::text, job_id::text, kind, coalesce(provider, ''), text, negative, style, rubric, created_at
from prompts
where job_id = $1::uuid
order by created_at asc;
`
