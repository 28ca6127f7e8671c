package sqlinline

const QInsertModelRun = `--sql 803a9d6d-3596-49b0-87ba-b2fdcbd83903
insert into model_runs (id, job_id, prompt_id, provider, status, cost_credits, started_at)
values ($1::uuid, $2::uuid, $3::uuid, $4::text, 'RUNNING', $5::int, now())
returning started_at;
`

const QSucceedModelRun = `--sql 588c921f-2b62-4dec-ab64-d2f51ad66315
update model_runs
set status = 'SUCCEEDED', finished_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QFailModelRun = `--sql b0039c8f-cc7c-43c0-b8d5-7eac2af97b3b
update model_runs
set status = 'FAILED', error = $2::text, finished_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QInsertImageOutput = `--sql 60349f12-6726-4e01-8b38-319b30836d3e
insert into image_outputs (id, run_id, url, width, height, seed, metadata, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::int, $5::int, $6::bigint, $7::jsonb, now());
`

const QListRunsByJob = `--sql 2e46ed9a-12a9-408a-944f-7fab0aa4993d
select id::text, job_id::text, prompt_id::text, provider, status, cost_credits,
       coalesce(error, ''), started_at, finished_at
from model_runs
where job_id = $1::uuid
order by started_at asc;
`

const QListOutputsByJob = `--sql 501d9855-9d07-4575-b354-77e1367acc95
select o.id::text, o.run_id::text, o.url, o.width, o.height, o.seed, o.metadata, o.created_at
from image_outputs o
join model_runs r on r.id = o.run_id
where r.job_id = $1::uuid
order by o.created_at asc;
`
